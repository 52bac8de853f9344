package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"machinerun.io/mptraid/config"
	"machinerun.io/mptraid/mockhba"
	"machinerun.io/mptraid/raidctl"
)

var version string

const settleTimeout = 10 * time.Second

func printTextTable(data [][]string) {
	var lengths = make([]int, len(data[0]))

	for _, line := range data {
		for i, field := range line {
			if len(field) > lengths[i] {
				lengths[i] = len(field)
			}
		}
	}

	fmts := make([]string, len(lengths))

	for i, l := range lengths {
		fmts[i] = fmt.Sprintf("%%-%ds", l)
	}

	pfmt := strings.Join(fmts, " | ") + " |\n"

	for _, line := range data {
		s := make([]interface{}, len(line))
		for i, v := range line {
			s[i] = v
		}

		fmt.Printf(pfmt, s...)
	}
}

func newLogger(verbose bool) logr.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return zerologr.New(&zl)
}

// session is a controller attached to a simulated HBA.
type session struct {
	hba  *mockhba.HBA
	blk  *mockhba.Block
	ctrl *raidctl.Controller
}

func (s *session) close() {
	s.ctrl.Detach()
	s.hba.Close()
}

func (s *session) settle() error {
	return s.ctrl.Sync(settleTimeout)
}

func attachLayout(c *cli.Context) (*session, error) {
	path := c.Args().First()
	if path == "" {
		return nil, errors.New("a layout file is required")
	}

	layout, err := mockhba.LoadLayout(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Options(newLogger(c.Bool("verbose")))
	if err != nil {
		return nil, err
	}

	s := &session{hba: mockhba.FromLayout(layout), blk: mockhba.NewBlock()}

	s.ctrl, err = raidctl.Attach(s.hba, s.blk, opts)
	if err != nil {
		s.hba.Close()
		return nil, err
	}

	if err := s.settle(); err != nil {
		s.close()
		return nil, err
	}

	return s, nil
}

func main() {
	app := &cli.App{
		Name:    "mptraid-demo",
		Version: version,
		Usage:   "Drive the raid state engine against a simulated controller",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "settings file (default: ./mptraid.yaml or /etc/mptraid/mptraid.yaml)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug messages",
			},
		},
		Commands: []*cli.Command{
			&showCommand,
			&setCommand,
			&eventCommand,
			&simulateCommand,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
