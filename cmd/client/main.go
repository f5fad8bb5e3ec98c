package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/client"
	"github.com/aweso807-blip/syncb/internal/domain"
	"github.com/aweso807-blip/syncb/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:3001/ws", "relay websocket URL")
	room := flag.String("room", "", "room id to join")
	name := flag.String("name", "", "display name")
	id := flag.String("id", "", "client id (random when empty)")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if *room == "" {
		fmt.Fprintln(os.Stderr, "usage: client -room <id> [-url ws://...] [-name ...]")
		os.Exit(2)
	}
	clientID := *id
	if clientID == "" {
		clientID = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()
	player := newSimPlayer(clock)

	sess, err := client.Dial(ctx, *url, player, client.SessionOptions{
		RoomID:   domain.RoomID(*room),
		ClientID: domain.ClientID(clientID),
		Username: *name,
		Clock:    clock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}

	sess.OnStatus = func(line string) { fmt.Printf("* %s\n", line) }
	sess.OnChat = func(msg protocol.ChatEvent) { fmt.Printf("<%s> %s\n", msg.Username, msg.Text) }
	sess.OnCount = func(n int) { fmt.Printf("* %d watching\n", n) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(ctx)
	}()

	repl(ctx, cancel, sess, player)
	<-done
}

func repl(ctx context.Context, cancel context.CancelFunc, sess *client.Session, player *simPlayer) {
	fmt.Println("commands: load <ref> | play | pause | seek <s> | rate <r> | fwd | back | host | say <text> | status | quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "load":
			sess.Reconciler().LoadMedia(strings.TrimSpace(arg), true)
		case "play":
			player.Play()
		case "pause":
			player.Pause()
		case "seek":
			if v, err := strconv.ParseFloat(arg, 64); err == nil {
				player.Seek(v)
			}
		case "rate":
			if v, err := strconv.ParseFloat(arg, 64); err == nil {
				player.SetRate(v)
			}
		case "fwd":
			player.Seek(player.Position() + 5)
		case "back":
			player.Seek(player.Position() - 5)
		case "host":
			_ = sess.ClaimHost(ctx)
		case "say":
			_ = sess.SendChat(ctx, arg)
		case "status":
			fmt.Printf("* media=%q playing=%v pos=%.2f rate=%.2f\n",
				player.MediaRef(), player.Playing(), player.Position(), player.Rate())
		case "quit":
			cancel()
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	cancel()
}
