package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/logger"
	"github.com/mdouchement/notepad/internal/server"
	"github.com/mdouchement/notepad/internal/server/hub"
	"github.com/mdouchement/notepad/internal/server/middlewares"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

const dbname = "notepadd.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg  string
	role string
	ttl  time.Duration
)

func main() {
	c := &coral.Command{
		Use:     "notepadd",
		Short:   "Notes backend with realtime change stream",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	tokenCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	tokenCmd.Flags().StringVarP(&role, "role", "r", middlewares.RoleAnon, "Role of the API key")
	tokenCmd.Flags().DurationVarP(&ttl, "ttl", "", 0, "Validity of the API key, 0 never expires")
	c.AddCommand(tokenCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func load() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "could not load config")
	}
	return konf, nil
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func open(konf *koanf.Koanf) (database.Client, error) {
	if url := konf.String("postgres_url"); url != "" {
		return database.PostgresOpen(context.Background(), url)
	}
	return database.StormOpen(dbnameWithPath(konf.String("database_path")))
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			if konf.String("postgres_url") != "" {
				// The schema is applied when the database is opened.
				db, err := open(konf)
				if err != nil {
					return err
				}
				return db.Close()
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			if konf.String("postgres_url") != "" {
				return errors.New("reindex is only supported by the embedded database")
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	tokenCmd = &coral.Command{
		Use:   "token",
		Short: "Generate an API key",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			if konf.String("jwt_secret") == "" {
				return errors.New("jwt_secret not found")
			}

			key, err := middlewares.SignAPIKey(konf.Bytes("jwt_secret"), role, ttl)
			if err != nil {
				return err
			}

			fmt.Println(key)
			return nil
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			if konf.String("jwt_secret") == "" {
				return errors.New("jwt_secret not found")
			}

			logr := logger.NewConsole(os.Stdout)

			db, err := open(konf)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			broker := hub.NewMemoryBroker()
			if url := konf.String("redis_url"); url != "" {
				broker, err = hub.NewRedisBroker(url)
				if err != nil {
					return errors.Wrap(err, "could not connect to redis")
				}
			}
			defer broker.Close()

			h, err := hub.New(broker, logr)
			if err != nil {
				return errors.Wrap(err, "could not start realtime hub")
			}
			defer h.Close()

			engine := server.EchoEngine(server.Controller{
				Version:    version,
				Database:   db,
				Hub:        h,
				Logger:     logr,
				SigningKey: konf.Bytes("jwt_secret"),
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			log.Printf("Server listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)
