// Command catalog-seed loads gzip-compressed catalog dumps into the
// product_variants table. Each dump is a JSON-lines file of variant
// records; files are processed concurrently and rows are upserted so
// re-running the seed is safe.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/vendora/marketplace-core/internal/storage/postgres"
)

const progressEvery = 10_000

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog seed completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(seedFile(ctx, pool, f))
	}
	return g.Wait()
}

// variantRecord is one line of a catalog dump.
type variantRecord struct {
	ID            string
	VendorID      string
	ProductID     string
	SKU           string
	Name          string
	Attributes    map[string]string
	PriceCents    int64
	StockQuantity int
}

func seedFile(ctx context.Context, pool *pgxpool.Pool, path string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			rec, err := decodeVariant(line)
			if err != nil {
				return errors.Wrapf(err, "decode line %d of %s", count+1, path)
			}
			if err := upsertVariant(ctx, pool, rec); err != nil {
				return errors.Wrapf(err, "upsert variant %s", rec.ID)
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("seed progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("variants", count),
				)
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("seed complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("variants", count),
		)
		return nil
	}
}

// decodeVariant parses one JSON-lines record.
func decodeVariant(line []byte) (*variantRecord, error) {
	var rec variantRecord
	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			rec.ID, err = d.Str()
		case "vendor_id":
			rec.VendorID, err = d.Str()
		case "product_id":
			rec.ProductID, err = d.Str()
		case "sku":
			rec.SKU, err = d.Str()
		case "name":
			rec.Name, err = d.Str()
		case "attributes":
			rec.Attributes = make(map[string]string)
			err = d.Obj(func(d *jx.Decoder, attr string) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				rec.Attributes[attr] = v
				return nil
			})
		case "price_cents":
			rec.PriceCents, err = d.Int64()
		case "stock_quantity":
			rec.StockQuantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}

	if rec.ID == "" || rec.SKU == "" {
		return nil, errors.New("record missing id or sku")
	}
	return &rec, nil
}

const upsertVariantSQL = `INSERT INTO product_variants (
		id, vendor_id, product_id, sku, name, attributes, price_cents, stock_quantity
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		vendor_id = EXCLUDED.vendor_id,
		product_id = EXCLUDED.product_id,
		sku = EXCLUDED.sku,
		name = EXCLUDED.name,
		attributes = EXCLUDED.attributes,
		price_cents = EXCLUDED.price_cents,
		stock_quantity = EXCLUDED.stock_quantity`

func upsertVariant(ctx context.Context, pool *pgxpool.Pool, rec *variantRecord) error {
	_, err := pool.Exec(ctx, upsertVariantSQL,
		rec.ID, rec.VendorID, rec.ProductID, rec.SKU, rec.Name,
		rec.Attributes, rec.PriceCents, rec.StockQuantity,
	)
	return err
}
