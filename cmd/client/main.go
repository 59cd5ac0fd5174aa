// Meshline terminal client: joins a room for chat and signaling, prints
// incoming messages and negotiates direct peer links with everyone else
// in the room.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
	"github.com/meshline/meshline/internal/peer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	url := flag.String("url", "ws://127.0.0.1:8080/api/ws", "server WebSocket URL")
	room := flag.String("room", "main", "room to join")
	history := flag.Int("history", 20, "messages to backfill on join")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	pterm.Info.Println("Meshline client")
	pterm.Println()

	opts := peer.ClientOptions{
		OnChat: func(ev core.ChatMessageEvent) {
			pterm.Printfln("%s [%s] %s: %s",
				ev.Timestamp.Format("15:04:05"), ev.Room, shortID(ev.Sender), ev.Text)
		},
		OnHistory: func(ev core.ChatHistoryEvent) {
			for _, m := range ev.Messages {
				pterm.Printfln("%s [%s] %s: %s",
					m.Timestamp.Format("15:04:05"), m.Room, shortID(m.Sender), m.Text)
			}
		},
		OnServerError: func(ev core.ErrorEvent) {
			pterm.Warning.Printfln("server: %s (%s)", ev.Reason, ev.Code)
		},
	}

	client, err := peer.Dial(ctx, *url, opts)
	if err != nil {
		pterm.Error.Printfln("connect failed: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	pterm.Success.Printfln("connected as %s", shortID(client.ID()))

	roomID := domain.RoomID(*room)
	if err := client.JoinChatRoom(roomID); err != nil {
		pterm.Error.Printfln("join failed: %v", err)
		os.Exit(1)
	}
	if err := client.JoinSignalRoom(roomID); err != nil {
		pterm.Error.Printfln("join failed: %v", err)
		os.Exit(1)
	}
	if *history > 0 {
		_ = client.RequestHistory(roomID, *history)
	}

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			pterm.Error.Printfln("connection lost: %v", err)
			stop()
		}
	}()

	// Stdin loop: plain lines are chat; /peers shows mesh state.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/peers":
			pterm.Info.Printfln("negotiating or connected peers: %d", client.Peers().Len())
		default:
			if err := client.SendChat(roomID, line); err != nil {
				pterm.Error.Printfln("send failed: %v", err)
				return
			}
		}
	}
}

func shortID(id domain.ConnID) string {
	s := string(id)
	if len(s) > 8 {
		return fmt.Sprintf("%s…", s[:8])
	}
	return s
}
