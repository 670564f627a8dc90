// Package schema holds the binding: enums, classes with single inheritance
// and their data members, and the datasheet file types.
//
// A binding is read from YAML (or JSON) in declaration order:
//
//	version: 3
//	enums:
//	  - name: Rarity
//	    values: [Common, Rare, Epic]
//	classes:
//	  - name: Item
//	    abstract: true
//	    members:
//	      - {name: label, type: String, localized: true}
//	      - {name: rarity, type: Enum, enum: Rarity, default: Rare}
//	  - name: Weapon
//	    base: Item
//	    members:
//	      - {name: damage, type: Int, default: 5}
//	      - {name: grip, type: Vector2f, default: [0.5, 1]}
//	datasheets:
//	  - {name: Weapon, class: Weapon, extension: weapon}
//
// Finalize links the declarations after all of them are known; a class only
// learns its descendants once every class has been read.
package schema
