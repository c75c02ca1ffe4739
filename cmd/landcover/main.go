// Command landcover loads a land-cover export into the database. The input is
// a CSV of "cell_id,class" rows, one per grid cell at the land-cover
// resolution, where class is the Copernicus discrete class code.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"strconv"

	"github.com/mmulqu/biome/internal/config"
	"github.com/mmulqu/biome/internal/database"
	"github.com/mmulqu/biome/internal/logger"
	"github.com/mmulqu/biome/internal/repository"
	"github.com/mmulqu/biome/internal/terrain"
)

func main() {
	file := flag.String("file", "", "path to the land-cover CSV export (cell_id,class)")
	flag.Parse()

	log := logger.New()
	if *file == "" {
		log.Fatal().Msg("-file is required")
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	rows, err := readExport(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to read land-cover export")
	}

	repo := repository.NewLandcoverRepository(db, log)
	if err := repo.Import(context.Background(), rows); err != nil {
		log.Fatal().Err(err).Msg("land-cover import failed")
	}
	log.Info().Int("rows", len(rows)).Msg("land-cover loaded")
}

func readExport(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	rows := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] == "cell_id" {
			continue // header
		}
		class, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, err
		}
		rows[record[0]] = terrain.BiomeForClass(class)
	}
	return rows, nil
}
