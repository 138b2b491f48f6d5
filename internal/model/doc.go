// Package model manages the one in-memory language model: load-once
// lifecycle with a sticky failure state and strictly serialized inference.
package model
