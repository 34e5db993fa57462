package main

// serve.go has the serve command which runs the GraphQL HTTP (and websocket) server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrewwphillips/gqlkit"
	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper, settings func() (*config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the GraphQL server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings()
			if err != nil {
				return err
			}
			z, log, err := cfg.logger()
			if err != nil {
				return err
			}
			defer z.Sync() // nolint

			k, err := newKit(cfg, log)
			if err != nil {
				return err
			}
			h, err := k.Handler()
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ln, cfg, h, log)
		},
	}
	cmd.Flags().String("addr", "", "address to listen on (default :8080)")
	cmd.Flags().String("path", "", "URL path of the GraphQL endpoint (default /graphql)")
	cmd.Flags().String("jwt-secret", "", "secret for checking the signature of bearer tokens")
	cmd.Flags().Bool("no-introspection", false, "reject introspection queries")
	bindFlags(v, cmd, "addr", "path", "jwt-secret", "no-introspection")
	return cmd
}

// newKit assembles the schema and the repositories (loaded with their seed data)
func newKit(cfg *config, log abstractlogger.Logger) (*gqlkit.Kit, error) {
	sdl, err := cfg.readSchema()
	if err != nil {
		return nil, err
	}
	k := gqlkit.New(sdl...)
	for _, rc := range cfg.Repositories {
		repo, err := k.MemoryRepository(rc.Type)
		if err != nil {
			return nil, err
		}
		if rc.Data == "" {
			continue
		}
		records, err := readRecords(rc.Data)
		if err != nil {
			return nil, fmt.Errorf("%w loading %s data", err, rc.Type)
		}
		entities, err := gqlkit.Entities(repo.DomainType(), records)
		if err != nil {
			return nil, fmt.Errorf("%w loading %s data", err, rc.Type)
		}
		if err := repo.Save(entities...); err != nil {
			return nil, err
		}
		log.Info("loaded repository", abstractlogger.String("type", rc.Type), abstractlogger.Int("entities", repo.Len()))
	}

	k.SetOptions(
		gqlkit.Logger(log),
		gqlkit.NoIntrospection(cfg.NoIntrospection),
		gqlkit.PingFrequency(cfg.PingFrequency),
	)
	if cfg.JWTSecret != "" {
		k.SetOptions(gqlkit.JWTSecret([]byte(cfg.JWTSecret)))
	}
	return k, nil
}

// serve handles requests on the listener until ctx is done, then shuts down the server
func serve(ctx context.Context, ln net.Listener, cfg *config, h http.Handler, log abstractlogger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)
	server := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	log.Info("serving GraphQL", abstractlogger.String("addr", ln.Addr().String()), abstractlogger.String("path", cfg.Path))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	log.Info("server stopped")
	return err
}
