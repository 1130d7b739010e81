// Package model implements the genera object model: classes with single
// inheritance, typed properties with optional custom accessors, instance
// construction, and validator chains.
//
// Classes are defined through a Registry and are immutable after
// definition. Instances are plain values owned by their creator; the
// registry never tracks them. All type checks happen at construction,
// mutation, and registration time against live class descriptors.
package model
