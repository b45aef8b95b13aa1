package geonarrative

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	source_domain TEXT NOT NULL DEFAULT '',
	outlet_name TEXT NOT NULL DEFAULT '',
	location_name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	lat REAL,
	lon REAL,
	published_unix INTEGER NOT NULL DEFAULT 0,
	embedding_json TEXT,
	embedding_model TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	linkage TEXT NOT NULL,
	distance_threshold REAL NOT NULL,
	min_cluster_size INTEGER NOT NULL,
	n_articles INTEGER NOT NULL,
	n_clusters INTEGER NOT NULL,
	empty INTEGER NOT NULL,
	silhouette REAL,
	balance_entropy REAL,
	result_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id TEXT NOT NULL,
	article_id TEXT NOT NULL,
	cluster_id INTEGER NOT NULL,
	classification TEXT NOT NULL,
	spatial_weight REAL NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (run_id, article_id)
);
`

var articleColumns = []string{
	"id", "text", "source_domain", "outlet_name", "location_name", "url",
	"lat", "lon", "published_unix", "embedding_json",
}

// Store persists articles, embeddings and run results in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Printf("Failed to close database: %v", cerr)
		}
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertArticles inserts or updates articles. A stored embedding survives
// an update that carries none unless the text changed, in which case it is
// cleared so the next embedding pass recomputes it.
func (s *Store) UpsertArticles(articles []Article) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to roll back: %v", err)
		}
	}()

	for _, a := range articles {
		var lat, lon, embedding any
		if a.Coordinates != nil {
			lat, lon = a.Coordinates.Lat, a.Coordinates.Lon
		}
		if len(a.Embedding) > 0 {
			data, err := json.Marshal(a.Embedding)
			if err != nil {
				return fmt.Errorf("failed to marshal embedding for %s: %w", a.ID, err)
			}
			embedding = string(data)
		}
		var published int64
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Unix()
		}

		_, err := sq.Insert("articles").
			Columns(articleColumns...).
			Values(a.ID, a.Text, a.SourceDomain, a.OutletName, a.LocationName, a.URL,
				lat, lon, published, embedding).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				source_domain = excluded.source_domain,
				outlet_name = excluded.outlet_name,
				location_name = excluded.location_name,
				url = excluded.url,
				lat = excluded.lat,
				lon = excluded.lon,
				published_unix = excluded.published_unix,
				embedding_json = CASE
					WHEN excluded.embedding_json IS NOT NULL THEN excluded.embedding_json
					WHEN excluded.text = articles.text THEN articles.embedding_json
				END,
				embedding_model = CASE
					WHEN excluded.embedding_json IS NULL AND excluded.text <> articles.text THEN ''
					ELSE articles.embedding_model
				END`).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to upsert article %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ArticlesMissingEmbeddings returns articles that have no embedding yet.
func (s *Store) ArticlesMissingEmbeddings() ([]Article, error) {
	return s.queryArticles(sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"embedding_json": nil}).
		OrderBy("created_at", "id"))
}

// SaveEmbedding stores the embedding of one article.
func (s *Store) SaveEmbedding(id string, embedding []float64, model string) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	res, err := sq.Update("articles").
		Set("embedding_json", string(data)).
		Set("embedding_model", model).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to save embedding for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to save embedding: article %s not found", id)
	}
	return nil
}

// LoadArticles returns stored articles published at or after since, or all
// articles when since is zero. Undated articles are always included.
func (s *Store) LoadArticles(since time.Time) ([]Article, error) {
	query := sq.Select(articleColumns...).From("articles").OrderBy("created_at", "id")
	if !since.IsZero() {
		query = query.Where(sq.Or{
			sq.GtOrEq{"published_unix": since.Unix()},
			sq.Eq{"published_unix": 0},
		})
	}
	return s.queryArticles(query)
}

func (s *Store) queryArticles(query sq.SelectBuilder) ([]Article, error) {
	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var articles []Article
	for rows.Next() {
		var a Article
		var lat, lon sql.NullFloat64
		var published int64
		var embeddingJSON sql.NullString

		err := rows.Scan(&a.ID, &a.Text, &a.SourceDomain, &a.OutletName, &a.LocationName, &a.URL,
			&lat, &lon, &published, &embeddingJSON)
		if err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			a.Coordinates = &Coordinates{Lat: lat.Float64, Lon: lon.Float64}
		}
		if published != 0 {
			a.PublishedAt = time.Unix(published, 0).UTC()
		}
		if embeddingJSON.Valid {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &a.Embedding); err != nil {
				return nil, fmt.Errorf("failed to parse embedding for %s: %w", a.ID, err)
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SaveRun records a run summary and its per-article assignments.
func (s *Store) SaveRun(r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to roll back: %v", err)
		}
	}()

	var silhouette, entropy any
	nClusters := 0
	if r.Quality != nil {
		nClusters = r.Quality.NClusters
		if r.Quality.SilhouetteScore != nil {
			silhouette = *r.Quality.SilhouetteScore
		}
		if r.Quality.BalanceEntropy != nil {
			entropy = *r.Quality.BalanceEntropy
		}
	}

	_, err = sq.Insert("runs").
		Columns("run_id", "created_at", "linkage", "distance_threshold", "min_cluster_size",
			"n_articles", "n_clusters", "empty", "silhouette", "balance_entropy", "result_json").
		Values(r.RunID, r.CreatedAt, string(r.Linkage), r.DistanceThreshold, r.MinClusterSize,
			r.NArticles, nClusters, r.Empty, silhouette, entropy, string(data)).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, a := range r.Articles {
		_, err := sq.Insert("assignments").
			Columns("run_id", "article_id", "cluster_id", "classification", "spatial_weight", "status").
			Values(r.RunID, a.ID, a.ClusterID, string(a.Classification), a.SpatialWeight, string(a.Status)).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert assignment for %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// LoadAssignments returns the per-article output of a stored run.
func (s *Store) LoadAssignments(runID string) ([]ClusteredArticle, error) {
	rows, err := sq.Select("article_id", "cluster_id", "classification", "spatial_weight", "status").
		From("assignments").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("article_id").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var out []ClusteredArticle
	for rows.Next() {
		var a ClusteredArticle
		var class, status string
		if err := rows.Scan(&a.ID, &a.ClusterID, &class, &a.SpatialWeight, &status); err != nil {
			return nil, err
		}
		a.Classification = Classification(class)
		a.Status = AssignmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RunCount returns how many runs are stored.
func (s *Store) RunCount() (int, error) {
	var n int
	err := sq.Select("COUNT(*)").From("runs").RunWith(s.db).QueryRow().Scan(&n)
	return n, err
}
