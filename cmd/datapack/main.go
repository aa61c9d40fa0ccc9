package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/DataDog/zstd"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"golang.org/x/sys/unix"

	"github.com/convrate/dashboard/abtest"
	"github.com/convrate/dashboard/db"
)

var (
	logsFilename = "datapack.log"
	inputPath    = flag.String("i", "./data.json", "Dataset to read, .zst is decompressed; \"db\" reads from $DB")
	outputPath   = flag.String("o", "./data.json.zst", "Where to write the packed dataset")
	level        = flag.Int("level", zstd.BestCompression, "zstd compression level")
	checkOnly    = flag.Bool("check", false, "Only validate the dataset")
	minFreeMB    = flag.Uint64("minfree", 50, "Refuse to write when less megabytes are free")
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func loadInput(ctx context.Context) (*abtest.ChartData, error) {
	if *inputPath != "db" {
		return abtest.LoadFile(*inputPath)
	}
	pool, err := pgxpool.Connect(ctx, os.Getenv("DB"))
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	return db.LoadDataset(ctx, pool)
}

func freeMegabytes(p string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(p, &stat); err != nil {
		log.Println("Statfs failed:", err)
		return 0
	}
	return (stat.Bavail * uint64(stat.Bsize)) / 1024 / 1024
}

func main() {
	flag.Parse()
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   "logs/" + logsFilename,
		MaxSize:    25,
		MaxAge:     31,
		MaxBackups: 0,
		LocalTime:  false,
		Compress:   true,
	}))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}
	log.Println("Datapack starting up at", time.Now().String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	d, err := loadInput(ctx)
	must(err)
	first, last := d.Span()
	log.Printf("Dataset ok: %d variations, %d days, %s .. %s", len(d.Variations), len(d.Data), first.Format("2006-01-02"), last.Format("2006-01-02"))
	if *checkOnly {
		return
	}

	outDir := filepath.Dir(*outputPath)
	must(os.MkdirAll(outDir, 0764))
	if free := freeMegabytes(outDir); free < *minFreeMB {
		log.Fatalln("Not enough space!", free)
	}
	b, err := abtest.Pack(d, *level)
	must(err)
	must(os.WriteFile(*outputPath, b, 0664))
	log.Printf("Wrote %s (%d bytes)", *outputPath, len(b))
}
