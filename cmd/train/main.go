package main

import (
	"flag"
	"log"
	"os"

	"ChurnScope/internal/services/churn"
	"ChurnScope/pkg/config"
	"ChurnScope/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dataset := flag.String("dataset", "", "training CSV, overrides training.dataset_path")
	output := flag.String("out", "", "artifact path, overrides training.output_path")
	version := flag.String("version", "", "model version recorded in the artifact")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *dataset != "" {
		cfg.Training.DatasetPath = *dataset
	}
	if *output != "" {
		cfg.Training.OutputPath = *output
	}
	if err := cfg.ValidateTraining(); err != nil {
		log.Fatalf("invalid training config: %v", err)
	}

	lg, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ds, err := churn.LoadDataset(cfg.Training.DatasetPath)
	if err != nil {
		lg.Error("dataset load failed", logger.Error(err))
		os.Exit(1)
	}
	lg.Info("dataset loaded",
		logger.String("path", cfg.Training.DatasetPath),
		logger.Int("rows", ds.Rows),
		logger.Int("dropped", ds.Dropped),
		logger.Int("samples", len(ds.Samples)),
	)

	tc := churn.DefaultTrainConfig()
	tc.TestRatio = cfg.Training.TestRatio
	tc.Seed = cfg.Training.Seed
	tc.MaxIter = cfg.Training.MaxIter
	tc.LearningRate = cfg.Training.LearningRate
	tc.L2 = cfg.Training.L2
	tc.Version = *version
	tc.Dataset = cfg.Training.DatasetPath

	artifact, err := churn.Train(ds, tc)
	if err != nil {
		lg.Error("training failed", logger.Error(err))
		os.Exit(1)
	}

	s := artifact.Training
	for _, split := range []struct {
		name string
		r    churn.EvalReport
	}{{"train", s.Train}, {"test", s.Test}} {
		lg.Info("evaluation",
			logger.String("split", split.name),
			logger.Int("n", split.r.N),
			logger.Float64("accuracy", split.r.Accuracy),
			logger.Float64("precision", split.r.Precision),
			logger.Float64("recall", split.r.Recall),
			logger.Float64("f1", split.r.F1),
			logger.Float64("log_loss", split.r.LogLoss),
		)
	}

	if err := artifact.Save(cfg.Training.OutputPath); err != nil {
		lg.Error("artifact save failed", logger.Error(err))
		os.Exit(1)
	}
	lg.Info("artifact written",
		logger.String("path", cfg.Training.OutputPath),
		logger.String("version", artifact.ModelVersion()),
		logger.Strings("features", artifact.FeatureNames),
	)
}
