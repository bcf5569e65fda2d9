package capture

import "fmt"

// BuildPath returns dir/<prefix><name><suffix>.png. Names are used verbatim;
// equal names produce equal paths.
func BuildPath(dir string, prefix string, name string, suffix string) string {
	return fmt.Sprintf("%s/%s%s%s.png", dir, prefix, name, suffix)
}
