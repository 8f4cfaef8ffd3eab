// Package storage provides blob storage backends for media assets.
//
// Two backends exist: a filesystem backend for development and an S3 backend
// for production (AWS or any S3-compatible store such as MinIO via
// path-style addressing). Both implement Backend; handlers never know which
// one they talk to.
package storage
