// Package fits reads and writes the subset of the Flexible Image Transport
// System needed to cut postage stamps: the primary header, and
// two-dimensional primary images of any BITPIX.
//
// Headers are sequences of 80-character cards stored in 2880-byte blocks and
// terminated by an END card. Image data follows the header, big-endian, with
// the first axis varying fastest. Pixel addressing is 1-based: the first
// pixel of an image is (1,1).
//
// Reads go through ReaderAt so that a pixel window can be fetched from a
// large tile without loading the whole image; blobstore.Blob satisfies it.
//
//	hdr, off, err := fits.ReadHeader(ctx, blob)
//	img, err := fits.NewImageReader(blob, hdr, off)
//	pix, err := img.ReadWindow(ctx, 100, 100, 140, 140)
//
// Stamps are written with Encode as BITPIX -32 images.
package fits
