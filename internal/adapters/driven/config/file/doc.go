// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under ~/.groundwork.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable system prompts
package file
