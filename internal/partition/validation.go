package partition

import (
	"fmt"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/pkg/types"
)

// ValidateKey checks that ds carries the partition columns and that every
// row belongs to key.
func ValidateKey(ds *dataset.Dataset, key types.PartitionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	want := key.Values()
	idx := make([]int, len(types.PartitionColumns))
	for i, name := range types.PartitionColumns {
		idx[i] = ds.Schema().Index(name)
		if idx[i] < 0 {
			return fmt.Errorf("partition column %q missing", name)
		}
	}
	return ds.Each(func(i int, r dataset.Row) error {
		for j, col := range idx {
			got, ok := dataset.AsFloat(r[col])
			if !ok || int(got) != want[j] {
				return fmt.Errorf("row %d: %s=%v does not match partition %s",
					i, types.PartitionColumns[j], r[col], key)
			}
		}
		return nil
	})
}
