package main

import _ "embed"

//go:embed build/tray.png
var trayIconBytes []byte
