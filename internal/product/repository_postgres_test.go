package product

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "slug", "price", "sold_count", "created_at", "updated_at"}).
		AddRow("p-1", "Single Origin Blend", "single-origin-blend", 840.0, 12, now, now)
	mock.ExpectQuery("SELECT .* FROM products WHERE id").WithArgs("p-1").WillReturnRows(rows)

	p, err := repo.GetByID(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if p.Name != "Single Origin Blend" || p.SoldCount != 12 {
		t.Fatalf("unexpected product %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT .* FROM products WHERE id").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "price", "sold_count", "created_at", "updated_at"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListImages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	rows := sqlmock.NewRows([]string{"id", "product_id", "variant_id", "image_type", "image_url", "position"}).
		AddRow("i-1", "p-1", nil, "hero-card", "/img/hero.jpg", 0).
		AddRow("i-2", "p-1", "v-1", "gallery", "/img/v1.jpg", 1)
	mock.ExpectQuery("FROM product_images WHERE product_id").WithArgs("p-1").WillReturnRows(rows)

	images, err := repo.ListImages(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].VariantID != nil {
		t.Fatalf("expected product-level image first, got %+v", images[0])
	}
	if images[1].VariantID == nil || *images[1].VariantID != "v-1" {
		t.Fatalf("expected variant image second, got %+v", images[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
