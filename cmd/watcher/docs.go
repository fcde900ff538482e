package main

//go:generate swag init -g cmd/watcher/main.go -o docs

// @title           Blockwatch API
// @version         0.1.0
// @description     Block list synchronization, diffing, and action recording.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
