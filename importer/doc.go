// Package importer loads items from CSV into any storage.ItemRepository.
//
// The input has a header row naming the columns item_name, price and
// quantity in any order. Each data row is validated and then saved on a
// worker pool. Bad rows do not stop the import; they are reported in the
// Result with their line numbers.
//
//	imp, err := importer.New(repo, importer.WithPoolSize(8))
//	if err != nil {
//	    return err
//	}
//	defer imp.Release()
//
//	res, err := imp.ImportFile(ctx, "items.csv")
package importer
