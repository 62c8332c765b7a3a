package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matheus3301/phonecontact/internal/domain"
)

type output struct {
	json bool
}

func (o output) encode(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o output) contact(c domain.Contact) error {
	if o.json {
		return o.encode(c)
	}
	fmt.Printf("ID:      %s\n", c.ID)
	fmt.Printf("Name:    %s\n", c.FullName())
	fmt.Printf("Phone:   %s\n", c.PhoneNumber)
	if c.ProfileImageURL != "" {
		fmt.Printf("Image:   %s\n", c.ProfileImageURL)
	}
	fmt.Printf("Device:  %v\n", c.IsInDeviceContacts)
	return nil
}

func (o output) contacts(contacts []domain.Contact) error {
	if o.json {
		return o.encode(contacts)
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts.")
		return nil
	}
	for _, c := range contacts {
		printRow(c)
	}
	return nil
}

func (o output) sections(sections []domain.Section) error {
	if o.json {
		return o.encode(sections)
	}
	if len(sections) == 0 {
		fmt.Println("No contacts.")
		return nil
	}
	for _, s := range sections {
		fmt.Printf("[%s]\n", s.Letter)
		for _, c := range s.Contacts {
			printRow(c)
		}
	}
	return nil
}

func printRow(c domain.Contact) {
	mark := " "
	if c.IsInDeviceContacts {
		mark = "*"
	}
	fmt.Printf("%s %-3s %-30s %-16s %s\n", mark, c.Initials(), c.FullName(), c.PhoneNumber, c.ID)
}
