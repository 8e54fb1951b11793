// Command gotick-host is an interactive console for a tick device on a
// serial port.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/google/shlex"

	"gotick/host/console"
	"gotick/host/serial"
	"gotick/protocol"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "serial device path")
	baud   = flag.Int("baud", 115200, "line rate (USB CDC devices ignore it)")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to %s...\n", *device)
	con, err := console.ConnectWithConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer con.Close()

	dict := con.Dictionary()
	fmt.Printf("Connected: gotick %s, %d commands, %d responses\n",
		dict.Version, len(dict.Commands), len(dict.Responses))
	fmt.Println("Type 'help' for commands, 'quit' to exit.")

	repl(con)
}

func repl(con *console.Console) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if run(con, args) {
			return
		}
	}
}

// run executes one console command, reporting whether the REPL should
// exit.
func run(con *console.Console, args []string) (quit bool) {
	switch args[0] {
	case "quit", "exit", "q":
		return true

	case "help", "?":
		printHelp()

	case "dict":
		printDictionary(con.Dictionary())

	case "tick":
		tick, err := con.QueryTick()
		if report(err) {
			return false
		}
		fmt.Printf("tick: %d\n", tick)

	case "uptime":
		seconds, err := con.QueryUptime()
		if report(err) {
			return false
		}
		fmt.Printf("uptime: %ds\n", seconds)

	case "calibration":
		cal, err := con.QueryCalibration()
		if report(err) {
			return false
		}
		fmt.Printf("loops per tick: %d (%d loops/s at %d Hz)\n",
			cal.LoopsPerTick, uint64(cal.LoopsPerTick)*uint64(cal.TickFrequency), cal.TickFrequency)

	case "stats":
		printStats(con.QueryStats())

	case "reset":
		printStats(con.ResetStats())

	case "raw":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: raw <command> [uint args...]")
			return false
		}
		report(sendRaw(con, args[1], args[2:]))

	default:
		fmt.Printf("unknown command %q (try 'help')\n", args[0])
	}
	return false
}

// sendRaw issues any dictionary command with unsigned integer arguments.
func sendRaw(con *console.Console, name string, args []string) error {
	vals := make([]uint32, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return fmt.Errorf("argument %q: %w", a, err)
		}
		vals[i] = uint32(v)
	}

	err := con.Send(name, func(out protocol.OutputBuffer) {
		for _, v := range vals {
			protocol.PutUvarint(out, v)
		}
	})
	if err != nil {
		return err
	}
	fmt.Println("acknowledged")
	return nil
}

func printStats(s console.Stats, err error) {
	if report(err) {
		return
	}
	fmt.Printf("ticks: %d  priority recomputes: %d  global recomputes: %d\n",
		s.Ticks, s.PriorityRecomputes, s.GlobalRecomputes)
}

func printDictionary(d *console.Dictionary) {
	fmt.Printf("gotick %s\n", d.Version)
	fmt.Printf("commands (%d):\n", len(d.Commands))
	for _, name := range sortedNames(d.Commands) {
		fmt.Printf("  [%d] %s\n", d.Commands[name], name)
	}
	fmt.Printf("responses (%d):\n", len(d.Responses))
	for _, name := range sortedNames(d.Responses) {
		fmt.Printf("  [%d] %s\n", d.Responses[name], name)
	}
	if len(d.Constants) > 0 {
		fmt.Printf("constants (%d):\n", len(d.Constants))
		names := make([]string, 0, len(d.Constants))
		for name := range d.Constants {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s = %s\n", name, d.Constants[name])
		}
	}
}

func sortedNames(m map[string]uint16) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// report prints err if set and says whether it was.
func report(err error) bool {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return true
	}
	return false
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  tick          current tick count")
	fmt.Println("  uptime        whole seconds since boot")
	fmt.Println("  calibration   busy-wait calibration report")
	fmt.Println("  stats         tick-handler counters")
	fmt.Println("  reset         zero the handler counters")
	fmt.Println("  dict          dump the device dictionary")
	fmt.Println("  raw <cmd> [args...]   send any dictionary command")
	fmt.Println("  quit          exit")
}
