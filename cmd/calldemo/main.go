package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/client"
	"github.com/edusphere/calls/config"
	"github.com/edusphere/calls/server"
)

// REQUIRED marks a flag the user must set.
const REQUIRED = "_REQUIRED"

func main() {
	user := flag.String("user", REQUIRED, "the durable user id to connect as")
	name := flag.String("name", "", "display name shown to callees")
	peer := flag.String("call", "", "user id to call immediately after connecting")
	flag.Parse()
	if *user == REQUIRED {
		fmt.Println("error while parsing arguments: -user is required")
		flag.Usage()
		os.Exit(1)
	}
	if *name == "" {
		*name = *user
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// the demo mints its own token; real clients get one from the platform
	token, err := server.NewAuth(cfg.AuthSecret).Mint(*user)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tr, err := client.DialRelay(dialCtx, cfg.RelayURL, token)
	cancel()
	if err != nil {
		log.Fatalf("dial relay: %v", err)
	}

	ctl := client.NewController(client.Config{
		UserID:      *user,
		DisplayName: *name,
		RingTimeout: cfg.RingTimeout,
		Media:       client.MediaConstraints{Audio: true, Video: true},
	}, tr, client.NewNegotiatorFactory(cfg.STUNURLs), stdoutHistory{})
	defer ctl.Close()

	go printEvents(ctl)

	if *peer != "" {
		if _, err := ctl.PlaceCall(*peer); err != nil {
			log.Errorf("place call: %v", err)
		}
	}

	fmt.Println("commands: call <user> | accept | reject | hangup | mute | video | quit")
	repl(ctl)
}

// repl reads commands until EOF or quit. Session-scoped commands apply to
// the single live session; the demo never juggles more than one.
func repl(ctl *client.Controller) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "call":
			if len(fields) != 2 {
				fmt.Println("usage: call <user>")
				continue
			}
			_, err = ctl.PlaceCall(fields[1])
		case "accept":
			err = forCurrent(ctl, ctl.Accept)
		case "reject":
			err = forCurrent(ctl, ctl.Reject)
		case "hangup":
			err = forCurrent(ctl, ctl.HangUp)
		case "mute":
			err = forCurrent(ctl, ctl.ToggleAudio)
		case "video":
			err = forCurrent(ctl, ctl.ToggleVideo)
		case "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
			continue
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func forCurrent(ctl *client.Controller, f func(string) error) error {
	infos := ctl.Sessions()
	if len(infos) == 0 {
		return fmt.Errorf("no active call")
	}
	return f(infos[0].ID)
}

func printEvents(ctl *client.Controller) {
	for ev := range ctl.Events() {
		switch e := ev.(type) {
		case client.IncomingCall:
			fmt.Printf("\n*** %s (%s) is calling -- accept/reject\n", e.CallerName, e.Peer)
		case client.StateChanged:
			fmt.Printf("[%s] %s\n", e.Peer, e.State)
		case client.RemoteMedia:
			kind := "media"
			if e.Stream.Track != nil {
				kind = e.Stream.Track.Kind().String()
			}
			fmt.Printf("[%s] remote %s track arrived\n", e.SessionID, kind)
		case client.MediaToggled:
			fmt.Printf("audio=%v video=%v\n", e.AudioOn, e.VideoOn)
		case client.CallEnded:
			if e.Err != nil {
				fmt.Printf("call with %s ended: %s (%v)\n", e.Peer, e.Reason, e.Err)
			} else {
				fmt.Printf("call with %s ended: %s\n", e.Peer, e.Reason)
			}
		}
	}
}

// stdoutHistory prints finished calls; a real client would post them to the
// platform's history service.
type stdoutHistory struct{}

func (stdoutHistory) Record(rec client.CallRecord) {
	fmt.Printf("history: %s -> %s %s (%s)\n",
		rec.Caller, rec.Callee, rec.Outcome, rec.EndedAt.Sub(rec.StartedAt).Round(time.Second))
}
