package packs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Catalog is the SQLite-backed pack catalog.
type Catalog struct {
	db   *sql.DB
	path string
}

// Config holds catalog configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewCatalog creates a new catalog instance. Init must be called before use.
func NewCatalog(cfg Config) (*Catalog, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	return &Catalog{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (c *Catalog) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", c.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	// The catalog is read by a single sequential process; a small pool is
	// plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	c.db = db
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Migrate runs the schema migrations.
func (c *Catalog) Migrate(_ context.Context) error {
	if c.db == nil {
		return fmt.Errorf("catalog not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(c.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Sync replaces the catalog contents with the given index in a single
// transaction.
func (c *Catalog) Sync(ctx context.Context, idx *Index) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"toolchains", "components", "boards", "devices", "packs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, p := range idx.Packs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO packs (id, vendor, name, version, description, required) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID(), p.Vendor, p.Name, p.Version, p.Description, p.Required,
		); err != nil {
			return fmt.Errorf("failed to insert pack %s: %w", p.ID(), err)
		}
		for _, d := range p.Devices {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO devices (pack_id, name, vendor, processor) VALUES (?, ?, ?, ?)`,
				p.ID(), d.Name, d.Vendor, d.Processor,
			); err != nil {
				return fmt.Errorf("failed to insert device %s: %w", d.Name, err)
			}
		}
		for _, b := range p.Boards {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO boards (pack_id, name, vendor, device) VALUES (?, ?, ?, ?)`,
				p.ID(), b.Name, b.Vendor, b.Device,
			); err != nil {
				return fmt.Errorf("failed to insert board %s: %w", b.Name, err)
			}
		}
		for _, comp := range p.Components {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO components (pack_id, class, grp, sub, version, description) VALUES (?, ?, ?, ?, ?, ?)`,
				p.ID(), comp.Class, comp.Group, comp.Sub, comp.Version, comp.Description,
			); err != nil {
				return fmt.Errorf("failed to insert component %s: %w", comp.ID(), err)
			}
		}
	}

	for _, t := range idx.Toolchains {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO toolchains (name, version, root) VALUES (?, ?, ?)`,
			t.Name, t.Version, t.Root,
		); err != nil {
			return fmt.Errorf("failed to insert toolchain %s: %w", t.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync: %w", err)
	}
	return nil
}

// PackVersions returns all catalog versions of vendor::name, newest first.
func (c *Catalog) PackVersions(ctx context.Context, vendor, name string) ([]*Pack, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT vendor, name, version, description, required FROM packs WHERE vendor = ? AND name = ?`,
		vendor, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pack versions: %w", err)
	}
	defer rows.Close()

	packs, err := scanPacks(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(packs, func(i, j int) bool {
		return CompareVersions(packs[i].Version, packs[j].Version) > 0
	})
	return packs, nil
}

// ListPacks returns every pack in the catalog ordered by identifier.
func (c *Catalog) ListPacks(ctx context.Context) ([]*Pack, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT vendor, name, version, description, required FROM packs ORDER BY vendor, name, version`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer rows.Close()
	return scanPacks(rows)
}

// RequiredPacks returns the packs flagged as part of the required baseline.
func (c *Catalog) RequiredPacks(ctx context.Context) ([]*Pack, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT vendor, name, version, description, required FROM packs WHERE required = 1 ORDER BY vendor, name, version`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list required packs: %w", err)
	}
	defer rows.Close()
	return scanPacks(rows)
}

func scanPacks(rows *sql.Rows) ([]*Pack, error) {
	var packs []*Pack
	for rows.Next() {
		p := &Pack{}
		if err := rows.Scan(&p.Vendor, &p.Name, &p.Version, &p.Description, &p.Required); err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packs: %w", err)
	}
	return packs, nil
}

// FindDevice looks up a device by name. A device offered by several packs
// resolves to the newest contributing pack.
func (c *Catalog) FindDevice(ctx context.Context, name string) (*Device, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT pack_id, name, vendor, processor FROM devices WHERE name = ?`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	defer rows.Close()

	var found *Device
	for rows.Next() {
		d := &Device{}
		if err := rows.Scan(&d.PackID, &d.Name, &d.Vendor, &d.Processor); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		if found == nil || d.PackID > found.PackID {
			found = d
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("device not found in catalog: %s", name)
	}
	return found, nil
}

// FindBoard looks up a board by name.
func (c *Catalog) FindBoard(ctx context.Context, name string) (*Board, error) {
	b := &Board{}
	err := c.db.QueryRowContext(ctx,
		`SELECT pack_id, name, vendor, device FROM boards WHERE name = ? LIMIT 1`, name,
	).Scan(&b.PackID, &b.Name, &b.Vendor, &b.Device)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("board not found in catalog: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query board: %w", err)
	}
	return b, nil
}

// ListDevices returns all devices, ordered by name.
func (c *Catalog) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT pack_id, name, vendor, processor FROM devices ORDER BY name, pack_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d := &Device{}
		if err := rows.Scan(&d.PackID, &d.Name, &d.Vendor, &d.Processor); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// ListBoards returns all boards, ordered by name.
func (c *Catalog) ListBoards(ctx context.Context) ([]*Board, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT pack_id, name, vendor, device FROM boards ORDER BY name, pack_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var boards []*Board
	for rows.Next() {
		b := &Board{}
		if err := rows.Scan(&b.PackID, &b.Name, &b.Vendor, &b.Device); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return boards, nil
}

// FindComponents returns the components matching class and group, optionally
// narrowed to a sub-group, restricted to the given pack IDs. An empty packIDs
// slice searches the whole catalog.
func (c *Catalog) FindComponents(ctx context.Context, packIDs []string, class, group, sub string) ([]*Component, error) {
	query := `SELECT pack_id, class, grp, sub, version, description FROM components WHERE class = ? AND grp = ?`
	args := []interface{}{class, group}
	if sub != "" {
		query += ` AND sub = ?`
		args = append(args, sub)
	}
	if len(packIDs) > 0 {
		query += ` AND pack_id IN (?` + repeatPlaceholder(len(packIDs)-1) + `)`
		for _, id := range packIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY pack_id, class, grp, sub`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()
	return scanComponents(rows)
}

// ListComponents returns all components, ordered by identifier.
func (c *Catalog) ListComponents(ctx context.Context) ([]*Component, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT pack_id, class, grp, sub, version, description FROM components ORDER BY class, grp, sub, pack_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()
	return scanComponents(rows)
}

func scanComponents(rows *sql.Rows) ([]*Component, error) {
	var comps []*Component
	for rows.Next() {
		comp := &Component{}
		if err := rows.Scan(&comp.PackID, &comp.Class, &comp.Group, &comp.Sub, &comp.Version, &comp.Description); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		comps = append(comps, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating components: %w", err)
	}
	return comps, nil
}

// ListToolchains returns all registered toolchains, ordered by name then
// newest version first.
func (c *Catalog) ListToolchains(ctx context.Context) ([]*Toolchain, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, version, root FROM toolchains ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list toolchains: %w", err)
	}
	defer rows.Close()

	var toolchains []*Toolchain
	for rows.Next() {
		t := &Toolchain{}
		if err := rows.Scan(&t.Name, &t.Version, &t.Root); err != nil {
			return nil, fmt.Errorf("failed to scan toolchain: %w", err)
		}
		toolchains = append(toolchains, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating toolchains: %w", err)
	}
	sort.SliceStable(toolchains, func(i, j int) bool {
		if toolchains[i].Name != toolchains[j].Name {
			return toolchains[i].Name < toolchains[j].Name
		}
		return CompareVersions(toolchains[i].Version, toolchains[j].Version) > 0
	})
	return toolchains, nil
}

// FindToolchain returns the newest registered toolchain with the given name,
// or the exact version when one is requested.
func (c *Catalog) FindToolchain(ctx context.Context, name, version string) (*Toolchain, error) {
	toolchains, err := c.ListToolchains(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range toolchains {
		if t.Name != name {
			continue
		}
		if version == "" || t.Version == version {
			return t, nil
		}
	}
	if version != "" {
		return nil, fmt.Errorf("toolchain not found in catalog: %s@%s", name, version)
	}
	return nil, fmt.Errorf("toolchain not found in catalog: %s", name)
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
