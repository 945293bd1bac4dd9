package product

import "context"

// Service exposes catalog reads to handlers and to the cart, which snapshots
// prices and images from here at add time.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetVariant(ctx context.Context, id string) (Variant, error) {
	return s.repo.GetVariant(ctx, id)
}

func (s *Service) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	return s.repo.ListVariants(ctx, productID)
}

func (s *Service) ListImages(ctx context.Context, productID string) ([]Image, error) {
	return s.repo.ListImages(ctx, productID)
}

// CardImages resolves the display image for each listed product in one
// batched lookup, for the storefront card grid.
func (s *Service) CardImages(ctx context.Context, products []Product) (map[string]*string, error) {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	images, err := s.repo.ListImagesForProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string][]Image)
	for _, img := range images {
		byProduct[img.ProductID] = append(byProduct[img.ProductID], img)
	}

	out := make(map[string]*string, len(products))
	for _, p := range products {
		out[p.ID] = ResolveDisplayImage(byProduct[p.ID], nil)
	}
	return out, nil
}
