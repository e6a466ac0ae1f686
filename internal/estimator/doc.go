// Package estimator defines the pose estimator and fiducial detector
// collaborators and the implementations the consolidator wires in.
//
// ExecEstimator and ExecDetector run configured commands that exchange JSON
// on stdin and print their result on stdout. ReplayEstimator serves poses the
// upstream tracker already wrote next to the demonstration. StaticDetector
// returns a configured tag pose.
package estimator
