// Package logging adapts logging libraries to types.Logger.
//
// Adapters:
//   - ZerologLogger: github.com/rs/zerolog, used by the helmsman command
//   - NopLogger: discards everything, the library default
//   - TestLogger: writes through testing.T
package logging
