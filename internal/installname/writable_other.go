//go:build !unix

package installname

func checkWritable(path string) error {
	return nil
}
