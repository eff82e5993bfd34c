package images

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MatChecksum hashes the pixel data of mat. Non-continuous Mats, such as
// regions of a larger frame, are compacted first so only their own pixels
// are hashed.
//
// Arguments:
//   - mat: The Mat to hash.
//
// Returns:
//   - string: The hex-encoded MD5 of the pixel bytes, "empty" for an empty Mat.
//   - error: An error if the pixel data cannot be read.
//
// @example
// before, _ := images.MatChecksum(frame)
func MatChecksum(mat gocv.Mat) (string, error) {
	if mat.Empty() {
		return "empty", nil
	}

	if !mat.IsContinuous() {
		compact := mat.Clone()
		defer compact.Close()
		return MatChecksum(compact)
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "", errors.Wrap(err, "read mat data")
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
