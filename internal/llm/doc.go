// Package llm abstracts the inference backend behind a small Engine
// interface. The llama.cpp implementation is compiled in with the 'llama'
// build tag; default builds get a stub that fails fast.
package llm
