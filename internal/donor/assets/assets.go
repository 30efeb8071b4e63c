// Package assets embeds the reference-process donor package. The real
// donor is a platform application package; what is embedded here is a
// placeholder payload shaped the same way (gzip-compressed, staged
// byte-for-byte to disk) so the provisioner's staging step has a real
// asset to exercise.
package assets

import _ "embed"

//go:embed donor.pkg.gz
var DonorPackageGz []byte
