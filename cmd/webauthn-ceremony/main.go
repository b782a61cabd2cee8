// Command webauthn-ceremony reads one JSON command from standard input,
// runs it against the ceremony engine, and writes one JSON result to
// standard output. The exit code is 0 only when the result reports ok.
//
// Configuration comes from WEBAUTHN_CEREMONY_* environment variables; when
// WEBAUTHN_CEREMONY_STORE_PATH is set challenges and credentials persist in
// a SQLite file, otherwise each invocation uses an in-memory store.
package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/splitsecure/go-webauthn-ceremony/ceremony"
	"github.com/splitsecure/go-webauthn-ceremony/stdio"
	"github.com/splitsecure/go-webauthn-ceremony/store/memory"
	"github.com/splitsecure/go-webauthn-ceremony/store/sqlite"
)

func main() {
	log.SetPrefix("webauthn-ceremony: ")
	log.SetFlags(0)

	cfg := ceremony.LoadConfigFromEnv()

	var store ceremony.Store
	if cfg.StorePath != "" {
		s, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			log.Fatalf("opening store at %s: %v", cfg.StorePath, err)
		}
		defer s.Close()
		store = s
	} else {
		store = memory.New()
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reading command: %v", err)
	}

	handler := stdio.NewHandler(store, cfg)
	out, ok := handler.Handle(context.Background(), raw)

	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
	if !ok {
		os.Exit(1)
	}
}
