// Package tracking decides, frame by frame, how an object's pose is obtained.
//
// One Machine runs per (prompt, camera). Step consumes the frame's manual
// annotation and returns the action the consolidator must carry out. Machines
// are strictly sequential and are not safe for concurrent use.
package tracking
