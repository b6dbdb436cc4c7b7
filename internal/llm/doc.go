// Package llm provides the text generation client used by every pipeline
// stage. It defines the Generator interface (one system/user instruction
// pair in, one completion out) and an OpenAI chat-completions
// implementation of it.
package llm
