// Package ir defines the exam record model shared by every other package:
// levels, categories, records, sections, statistics, problem kinds, and the
// canonical JSON used for content fingerprints.
//
// This package imports nothing internal. Key constraints:
//   - Statistics is a derived cache and never authoritative
//   - Unknown JSON keys are preserved in Extra and written back verbatim
//   - Fingerprints use canonical JSON (sorted keys, NFC strings, no floats)
package ir
