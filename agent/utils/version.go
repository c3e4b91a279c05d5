package utils

// Version is the current version of the courier runtime.
var Version = "0.1.0"
