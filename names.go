package main

import (
	"fmt"
	"math/rand"
)

var nameAdjectives = []string{
	"Brave", "Clever", "Wild", "Swift", "Bold", "Mighty", "Mystic", "Noble",
	"Fierce", "Gentle", "Silent", "Rapid", "Calm", "Proud", "Wise", "Happy",
	"Lucky", "Sneaky", "Cunning", "Bright", "Golden", "Silver", "Royal", "Quick",
}

var nameAnimals = []string{
	"Octopus", "Tiger", "Phoenix", "Dragon", "Eagle", "Wolf", "Bear", "Fox",
	"Lion", "Hawk", "Shark", "Panther", "Raven", "Falcon", "Lynx", "Owl",
	"Dolphin", "Otter", "Badger", "Raccoon", "Moose", "Jaguar", "Cheetah", "Puma",
}

// randomDisplayName fills in for players who join without a name, in the
// format AdjectiveAnimalNumber.
func randomDisplayName() string {
	adjective := nameAdjectives[rand.Intn(len(nameAdjectives))]
	animal := nameAnimals[rand.Intn(len(nameAnimals))]
	return fmt.Sprintf("%s%s%d", adjective, animal, rand.Intn(100))
}
