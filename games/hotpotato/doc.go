// Package hotpotato coordinates sessions of hot potato.
//
// How to play:
//   - Players connect and join a lobby with a display name
//   - The first player to join is the host, and picks how many players the round needs
//   - Once that many players have joined, the potato is handed to a random player
//   - Whoever holds the potato can throw it, and it lands on a random other live player
//   - Holding it past the hold limit eliminates the holder
//   - After an elimination the potato goes back to whoever last threw it, if they are still in
//   - The last live player wins, and the lobby reopens for another round
//
// Implementation details:
//   - Each session is owned by a single Coordinator goroutine; nothing else touches its state
//   - Client actions arrive as Events and are applied by Session.dispatch, which returns
//     the messages to deliver; the Coordinator delivers them through the Registry
//   - The hold timer ticks only while a game is active, and restarts on every holder change
//   - Transport bindings only need to implement Conn and call Manager.Dispatch
package hotpotato
