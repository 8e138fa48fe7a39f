// Package models holds the GORM rows behind the obligation store. Domain
// types carry no ORM tags; each model converts itself to and from its
// aggregate with ToDomain and FromDomain.
package models
