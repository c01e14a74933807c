package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alpacahq/gofolio/external/kafka"
	"github.com/alpacahq/gofolio/external/segment"
	"github.com/alpacahq/gofolio/external/slack"
	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/gbreg"
	"github.com/alpacahq/gofolio/metrics"
	"github.com/alpacahq/gofolio/migration"
	"github.com/alpacahq/gofolio/price"
	"github.com/alpacahq/gofolio/service/registry"
	"github.com/alpacahq/gofolio/utils/clock"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/alpacahq/gofolio/utils/env"
	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/alpacahq/gofolio/utils/initializer"
	"github.com/alpacahq/gofolio/utils/log"
	"github.com/alpacahq/gofolio/utils/signalman"
	"github.com/jinzhu/gorm"
	"go.uber.org/zap/zapcore"
	"gopkg.in/urfave/cli.v1"
)

// session is what every command runs against.
type session struct {
	ctx      context.Context
	db       *gorm.DB
	services registry.Registry
}

func main() {
	app := cli.NewApp()
	app.Name = "gofolio"
	app.Usage = "Simulated stock portfolio ledger"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "YAML file of KEY: value settings"},
		cli.StringFlag{Name: "user, u", EnvVar: "GOFOLIO_USER"},
		cli.StringFlag{Name: "password, p", EnvVar: "GOFOLIO_PASSWORD"},
	}
	app.Commands = commands()

	ctx, cancel := signalman.Start(context.Background())
	defer cancel()

	app.Metadata = map[string]interface{}{"ctx": ctx}

	err := app.Run(os.Args)

	if cerr := signalman.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if err != nil {
		if _, ok := err.(cli.ExitCoder); !ok {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(1)
	}
}

// open loads configuration and wires every dependency. Whatever
// it opens is released by signalman.Close.
func open(c *cli.Context) (*session, error) {
	clock.Set()

	initializer.Initialize()

	if path := c.GlobalString("config"); path != "" {
		if err := initializer.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if webhook := env.GetVar("SLACK_WEBHOOK"); webhook != "" {
		log.Logger().AddCallback(
			"gofolio_slack_errors",
			zapcore.ErrorLevel,
			slack.Callback(webhook, func(err error) {
				fmt.Fprintln(os.Stderr, "failed to send slack alert:", err)
			}),
		)
	}

	if err := metrics.Init(); err != nil {
		log.Warn("metrics disabled", "error", err)
	} else {
		signalman.RegisterFunc("metrics", func() error {
			metrics.Close()
			return nil
		})
	}

	gdb, err := db.NewDB()
	if err != nil {
		return nil, err
	}
	signalman.RegisterFunc("db", gdb.Close)

	if err = migration.Migration(gdb).Migrate(); err != nil {
		return nil, gberrors.PersistenceFailure.WithMsg("failed to migrate database").WithError(err)
	}

	sheet, err := price.LoadSheet(env.GetVar("PRICE_SHEET"))
	if err != nil {
		return nil, err
	}

	publisher := publishers()
	signalman.RegisterFunc("publisher", publisher.Close)

	services, err := gbreg.New(gdb, sheet, sheet, publisher)
	if err != nil {
		return nil, err
	}

	ctx, _ := c.App.Metadata["ctx"].(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}

	return &session{ctx: ctx, db: gdb, services: services}, nil
}

// publishers combines every configured event sink.
func publishers() gbevents.Publisher {
	sinks := gbevents.Multi{}

	if brokers := kafka.ParseBrokers(env.GetVar("KAFKA_BROKERS")); len(brokers) > 0 {
		sinks = append(sinks, kafka.NewPublisher(brokers, env.GetVar("KAFKA_TOPIC")))
	}

	if key := env.GetVar("SEGMENT_KEY"); key != "" {
		sinks = append(sinks, segment.NewPublisher(key))
	}

	if len(sinks) == 0 {
		return gbevents.Noop()
	}

	return sinks
}
