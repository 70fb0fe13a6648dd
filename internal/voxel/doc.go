// Package voxel is a small sample domain built on jobengine: a voxel scene
// made of shapes, listed by manifests. It registers an asset context, the
// jobs that edit the scene and an audit hook.
package voxel
