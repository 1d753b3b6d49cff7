package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/unred/signal-bridge/internal/biz/domain"
	"github.com/unred/signal-bridge/internal/biz/usecase"
)

// Dry run of the signal pipeline: reads a message from stdin or a file and
// prints what the bridge would send, without touching state or the network.
func main() {
	mode := flag.String("mode", "strict", "classifier mode: strict or loose")
	master := flag.String("master", "", "master hint, e.g. master_2")
	room := flag.String("room", "", "room hint, defaults from the master hint")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: signal-check [flags] [file]")
		flag.PrintDefaults()
	}
	flag.Parse()

	classifierMode, err := usecase.ParseClassifierMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	raw, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	text := usecase.Normalize(raw)
	if !usecase.NewSignalClassifier(classifierMode).LooksLikeSignal(text) {
		fmt.Printf("not a signal (%s)\n", classifierMode)
		os.Exit(3)
	}

	route := domain.Route{MasterHint: *master, RoomHint: *room}.WithDefaults()
	fmt.Println(usecase.Canonicalize(text, route.MasterHint))
	if keys := usecase.CandidateRoutingKeys(route); len(keys) > 0 {
		fmt.Fprintf(os.Stderr, "routing keys: %v\n", keys)
	}
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
