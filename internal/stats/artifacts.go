package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"evolver/internal/model"
)

const (
	runFile        = "run.json"
	historyFile    = "history.json"
	seriesFile     = "history.csv"
	populationFile = "population.json"
)

var seriesHeader = []string{
	"epoch", "size", "best_fitness", "mean_fitness", "stddev", "min_fitness",
	"offspring", "eliminated", "selector", "crossover", "replacement", "reward",
}

// RunArtifacts is everything exported for one stored run.
type RunArtifacts struct {
	Run        model.RunRecord
	History    []model.EpochStats
	Population model.PopulationSnapshot
}

// WriteRunArtifacts writes the run under baseDir/<run id> and returns that
// directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), artifacts.History); err != nil {
		return "", err
	}
	if err := WriteHistorySeries(runDir, artifacts.History); err != nil {
		return "", err
	}
	if artifacts.Population.RunID != "" {
		if err := writeJSON(filepath.Join(runDir, populationFile), artifacts.Population); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// WriteHistorySeries writes one CSV row per epoch.
func WriteHistorySeries(runDir string, history []model.EpochStats) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range history {
		if err := writer.Write([]string{
			strconv.Itoa(s.Epoch),
			strconv.Itoa(s.Size),
			formatFloat(s.BestFitness),
			formatFloat(s.MeanFitness),
			formatFloat(s.StdDev),
			formatFloat(s.MinFitness),
			strconv.Itoa(s.Offspring),
			strconv.Itoa(s.Eliminated),
			s.Selector,
			s.Crossover,
			s.Replacement,
			formatFloat(s.Reward),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
