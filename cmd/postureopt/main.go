// Package main is the posture optimization command: it searches for
// collision-free static postures that maximize gravity-parameter
// identification quality and writes them out as JSON.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/postureopt/posture"
)

var logger = golog.NewDevelopmentLogger("postureopt")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	app := &cli.App{
		Name:  "postureopt",
		Usage: "optimize static robot postures for gravity parameter identification",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Required: true,
				Usage:    "path of the JSON run configuration",
			},
			&cli.StringFlag{
				Name:  "urdf",
				Usage: "override the config's URDF path",
			},
			&cli.StringFlag{
				Name:  "out",
				Value: "postures.json",
				Usage: "path the resulting postures are written to",
			},
			&cli.StringFlag{
				Name:  "plot",
				Usage: "override the config's progress plot path",
			},
		},
		Action: func(c *cli.Context) error {
			return runOptimization(ctx, c, logger)
		},
	}
	return app.RunContext(ctx, args)
}

func runOptimization(ctx context.Context, c *cli.Context, logger golog.Logger) error {
	cfg, err := posture.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if urdf := c.String("urdf"); urdf != "" {
		cfg.URDF = urdf
	}
	if plot := c.String("plot"); plot != "" {
		cfg.ProgressPlot = plot
	}

	optimizer, err := posture.NewPostureOptimizer(cfg, logger)
	if err != nil {
		return err
	}
	trajectory, err := optimizer.Run(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(trajectory.Postures(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal postures")
	}
	outPath := c.String("out")
	//nolint:gosec
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write postures")
	}
	logger.Infof("wrote %d postures to %s", len(trajectory.Postures()), outPath)
	return nil
}
