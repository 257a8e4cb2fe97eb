package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"pulsegen/host/config"
	"pulsegen/host/device"
	"pulsegen/host/plan"
	"pulsegen/host/serial"
)

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// Shell is the ishell front end. It holds at most one open device.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Config *config.Config

	port   serial.Port
	client *device.Client
	name   string
}

// NewShell creates a shell with every command registered.
func NewShell(cfg *config.Config) *Shell {
	s := &Shell{
		Shell:  ishell.New(),
		Config: cfg,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

func shellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// mustBeConnected wraps a command that needs an open device.
func mustBeConnected(fn func(c *ishell.Context, dev *device.Client)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := shellFrom(c)
		if s.client == nil {
			if err := s.Connect(""); err != nil {
				c.Err(err)
				return
			}
		}
		fn(c, s.client)
	}
}

// Connect opens name, or the configured port, or the first likely device.
func (s *Shell) Connect(name string) error {
	if name == "" {
		name = s.Config.Serial.Port
	}
	if name == "" {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 || !ports[0].LikelyDevice() {
			return fmt.Errorf("no pulse generator found, give a port")
		}
		name = ports[0].Name
	}

	cfg := serial.DefaultConfig(name)
	cfg.Baud = s.Config.Serial.Baud
	cfg.ReadTimeout = s.Config.Serial.ReadTimeout
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	client := device.NewClient(port)
	client.SetTimeout(s.Config.Serial.ReplyTimeout)
	if s.Interactive {
		client.Diagnostics = func(line string) { s.Shell.Println(line) }
	}

	version, err := client.Version()
	if err != nil {
		port.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	if s.Config.Run.Debug > 0 {
		if err := client.SetDebug(s.Config.Run.Debug); err != nil {
			port.Close()
			return err
		}
	}

	s.Disconnect()
	s.port, s.client, s.name = port, client, name
	s.Shell.SetPrompt(name + " > ")
	glog.Infof("connected to %s (%s)", name, version)
	return nil
}

// Disconnect closes the current device, if any.
func (s *Shell) Disconnect() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		glog.Warningf("close %s: %v", s.name, err)
	}
	s.port, s.client, s.name = nil, nil, ""
	s.Shell.SetPrompt(unconnectedPrompt)
}

// Run processes args as one command, or runs the interactive shell.
func (s *Shell) Run(args ...string) error {
	defer s.Disconnect()
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Println("pulsegen host shell, type help for commands")
	s.Shell.Run()
	return nil
}

func (s *Shell) planPath(c *ishell.Context) string {
	if len(c.Args) > 0 {
		return c.Args[0]
	}
	return s.Config.Run.Plan
}

var commands = []*ishell.Cmd{
	&portsCmd,
	&connectCmd,
	&disconnectCmd,
	&sendCmd,
	&statusCmd,
	&fireCmd,
	&stopCmd,
	&waitCmd,
	&loadCmd,
	&showCmd,
}

var (
	portsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "list serial ports, likely devices first",
		Func: func(c *ishell.Context) {
			ports, err := serial.ListPorts()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, p := range ports {
				mark := " "
				if p.LikelyDevice() {
					mark = "*"
				}
				if p.IsUSB {
					c.Printf("%s %s  %s:%s %s %s\n", mark, p.Name, p.VID, p.PID, p.Serial, p.Product)
				} else {
					c.Printf("%s %s\n", mark, p.Name)
				}
			}
		},
	}

	connectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			name := ""
			if len(c.Args) > 0 {
				name = c.Args[0]
			}
			if err := shellFrom(c).Connect(name); err != nil {
				c.Err(err)
			}
		},
	}

	disconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "close the device",
		Func: func(c *ishell.Context) {
			shellFrom(c).Disconnect()
		},
	}

	sendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "LINE  send a raw console line",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("LINE required"))
				return
			}
			reply, err := dev.Command(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(reply)
		}),
	}

	statusCmd = ishell.Cmd{
		Name: "status",
		Help: "show the sequencer status",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			status, err := dev.Status()
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(status)
		}),
	}

	fireCmd = ishell.Cmd{
		Name: "fire",
		Help: "[wait]  arm the sequencer, optionally wait for the run to end",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			if err := dev.Fire(); err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) > 0 && c.Args[0] == "wait" {
				waitIdle(c, dev, shellFrom(c).Config.Run.WaitLimit)
				return
			}
			c.Println("OK")
		}),
	}

	stopCmd = ishell.Cmd{
		Name: "stop",
		Help: "abort a running sequence",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			if err := dev.Stop(); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	waitCmd = ishell.Cmd{
		Name: "wait",
		Help: "[SECONDS]  wait until the sequencer is idle",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			limit := shellFrom(c).Config.Run.WaitLimit
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil || secs <= 0 {
					c.Err(fmt.Errorf("invalid SECONDS %q", c.Args[0]))
					return
				}
				limit = time.Duration(secs * float64(time.Second))
			}
			waitIdle(c, dev, limit)
		}),
	}

	loadCmd = ishell.Cmd{
		Name: "load",
		Help: "[PLAN]  send a run plan to the device",
		Func: mustBeConnected(func(c *ishell.Context, dev *device.Client) {
			path := shellFrom(c).planPath(c)
			p, err := plan.Load(path)
			if err != nil {
				c.Err(err)
				return
			}
			if err := p.Apply(dev); err != nil {
				c.Err(err)
				return
			}
			c.Printf("loaded %s\n", path)
		}),
	}

	showCmd = ishell.Cmd{
		Name: "show",
		Help: "[PLAN]  print the lines a plan compiles to",
		Func: func(c *ishell.Context) {
			p, err := plan.Load(shellFrom(c).planPath(c))
			if err != nil {
				c.Err(err)
				return
			}
			lines, err := p.Compile()
			if err != nil {
				c.Err(err)
				return
			}
			for _, line := range lines {
				c.Println(line)
			}
		},
	}
)

func waitIdle(c *ishell.Context, dev *device.Client, limit time.Duration) {
	status, err := dev.WaitIdle(shellFrom(c).Config.Run.PollInterval, limit)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(status)
}
