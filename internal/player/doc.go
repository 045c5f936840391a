// Package player hands a video reference off to an external player.
//
// The command comes from PLAYER_CMD. It may name {ref} and {type}
// placeholders; without {ref} the reference is appended. PLAYER_CMD=none
// disables handoff. Once a player process has started, nothing here
// tracks it.
package player
