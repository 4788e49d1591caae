// Package morph defines the neuronal morphology data model: a soma with one
// of four encodings and a forest of neurite sections. Sections own their
// children and keep a non-owning link to their parent. Every non-root
// section starts at its parent's last point.
package morph
