// Package commands implements soltourctl, an offline tool that runs stored
// package snapshots and selection contexts through the same normalization,
// view and merge code as the server.
package commands
