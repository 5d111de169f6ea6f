// Package site owns the on-disk layout of preview sites: every site is the
// directory DataDir/<slug>, and directory presence is the only record that a
// site exists. The store reserves directories with an exclusive mkdir so two
// uploads can never land in the same directory, and answers existence lookups
// for the host router. Nothing here keeps an index in memory.
package site
