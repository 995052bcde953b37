// corebus-demo wires a JobRunner, a recorder, and a heartbeat publisher
// together and runs until interrupted, in the shape of the teacher's
// cmd/alert-framework binary.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyfitech/corebus/internal/app"
	"github.com/cyfitech/corebus/internal/config"
	"github.com/cyfitech/corebus/internal/pubsub"
	"github.com/cyfitech/corebus/internal/recorder"
)

type heartbeat struct {
	Seq int64
}

func serializeHeartbeat(h heartbeat) ([]byte, error) {
	return []byte{byte(h.Seq)}, nil
}

func main() {
	configPath := flag.String("config", "", "path to a runner/recorder config file (JSON or YAML)")
	recordDir := flag.String("record-dir", "./data", "base directory under which the recorder creates its segment directory")
	strict := flag.Bool("strict", false, "abort on config parse errors instead of falling back to defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath, *strict)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	application, err := app.New(cfg, *recordDir)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	node := pubsub.NewNode(application.Runner())
	defer node.Close()

	if rec := application.Recorder(); rec != nil {
		if err := recorder.RegisterChannel[heartbeat](rec, 0, serializeHeartbeat); err != nil {
			log.Fatalf("register heartbeat channel: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		var seq int64
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pubsub.Publish(node, 0, heartbeat{Seq: seq})
				seq++
			}
		}
	}()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
