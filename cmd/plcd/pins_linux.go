package main

import "github.com/robotalks/plc.go/pkg/ioblock/gpio"

func openPins() gpio.Pins {
	return gpio.NewSysfs()
}
