package table

import "context"

// PageSize is the batch size LoadAll requests per round trip.
const PageSize = 1000

// LoadAll pages through table in PageSize batches until an empty page is returned.
func LoadAll(ctx context.Context, s Store, t Name) ([]Row, error) {
	var all []Row
	for offset := 0; ; offset += PageSize {
		page, err := s.Select(ctx, t, offset, PageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
	}
}
