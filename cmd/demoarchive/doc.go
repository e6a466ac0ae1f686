// Command demoarchive consolidates robot demonstration recordings into
// per-demonstration archives.
//
// `demoarchive run` processes every demonstration under paths.demos_dir that
// the ledger has not completed; `demoarchive consolidate <dir>` processes one
// directory on demand. `inspect`, `queue`, `staging`, and `config` cover
// archive verification and housekeeping.
package main
