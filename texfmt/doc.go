// Package texfmt provides the built-in texture format decoders for texload.
//
// Importing the package registers its decoders with the texload package
// registry:
//
//	import _ "github.com/gogpu/texload/texfmt"
//
// Built-ins:
//   - StdImage: PNG and JPEG through the standard image package, with
//     pixels normalized to RGBA8 via x/image/draw.
//   - DDS: DirectDraw Surface header parsing (legacy fourCC and DX10
//     headers). Block-compressed payloads (BC1/BC3/BC4/BC5/BC6H/BC7) are
//     GPU-ready and passed through without unpacking; the decoder only
//     validates and slices the mip chain.
//
// Additional formats (QOI, TGA, ...) plug in through texload.RegisterDecoder
// without touching this package.
package texfmt
