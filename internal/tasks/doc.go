// Package tasks imports local audio files into the library with real-time progress reporting.
//
// # Operations
//
//  1. [Scanner.Scan] : one-shot import
//     - Walks each root for files with a known audio extension
//     - Reads tags and duration through a [services.MetadataExtractor] on a bounded worker pool
//     - Falls back to the file name for the title and "Unknown Artist" for the artist
//     - Upserts by a stable id derived from the absolute path, so rescans update in place
//
//  2. [Scanner.Watch] : keeps the library in sync with the file system (github.com/fsnotify/fsnotify)
//     - Created and modified files are imported once writes settle
//     - Removed and renamed files are deleted from the library
//     - New subdirectories are watched as they appear
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends use select with default
// so a slow consumer never blocks a scan.
package tasks
