package cache

import "fmt"

func buildPath(tileset string, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d.pbf", tileset, z, x, y)
}
