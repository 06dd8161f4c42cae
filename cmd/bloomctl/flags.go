package main

// Flag structs to decouple cobra from logic for testing.

type GlobalFlags struct {
	ConfigPath string
}

type StartFlags struct {
	Background     bool
	DevMode        bool
	SkipDependency bool
	Verbose        bool
	Force          bool
}

type StopFlags struct {
	Force          bool
	StopDependency bool
	Verbose        bool
}

type StatusFlags struct {
	JSON bool
}
