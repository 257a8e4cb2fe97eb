// Command pulsegen-host drives a pulse generator over its USB console.
//
// Without arguments it starts an interactive shell; with arguments it runs
// them as one shell command and exits, e.g.
//
//	pulsegen-host load camera.yaml
//	pulsegen-host send cdiv? 0
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"pulsegen/host/config"
)

var (
	configFile = flag.String("config", "pulsegen.yaml", "host configuration file")
	portFlag   = flag.String("port", "", "serial port (overrides the configuration)")
	evalOnly   = flag.Bool("e", false, "run the arguments as one command, no interactive shell")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	s := NewShell(cfg)
	s.Interactive = !*evalOnly && flag.NArg() == 0
	if err := s.Run(flag.Args()...); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
